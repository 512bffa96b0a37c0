// internal/app/system/authz/actions.go
package authz

// Action names one operation a principal can attempt against a resource.
// Wire names group by resource kind so logs and error payloads read cleanly.
type Action string

const (
	// Account actions. The resource is a *models.Account.
	ActionCreateAccount     Action = "account:create"
	ActionGetAccount        Action = "account:get"
	ActionPutAccount        Action = "account:put"
	ActionListAccount       Action = "account:list"
	ActionDisableAccount    Action = "account:disable"
	ActionGetAccountFlags   Action = "account:flags:get"
	ActionPutAccountFlags   Action = "account:flags:put"
	ActionGetAccountProfile Action = "account:profile:get"
	ActionPutAccountProfile Action = "account:profile:put"

	// Account sub-collection listings. The resource is the *models.Account
	// whose memberships or API keys are being listed.
	ActionListAccountMemberships Action = "account:memberships:list"
	ActionListAccountAPIKeys     Action = "account:api_keys:list"

	// Membership actions. The resource is a *models.Membership.
	ActionInviteMembership     Action = "membership:invite"
	ActionAcceptMembership     Action = "membership:accept"
	ActionRejectMembership     Action = "membership:reject"
	ActionRevokeMembership     Action = "membership:revoke"
	ActionUpdateMembershipRole Action = "membership:role:update"
	ActionGetMembership        Action = "membership:get"

	// Repository (product) actions. The resource is a *models.Product.
	ActionCreateRepository          Action = "repository:create"
	ActionGetRepository             Action = "repository:get"
	ActionListRepository            Action = "repository:list"
	ActionPutRepository             Action = "repository:put"
	ActionDisableRepository         Action = "repository:disable"
	ActionReadRepositoryData        Action = "repository:data:read"
	ActionWriteRepositoryData       Action = "repository:data:write"
	ActionListRepositoryAPIKeys     Action = "repository:api_keys:list"
	ActionListRepositoryMemberships Action = "repository:memberships:list"

	// API key actions. The resource is a *models.APIKey.
	ActionCreateAPIKey Action = "api_key:create"
	ActionGetAPIKey    Action = "api_key:get"
	ActionRevokeAPIKey Action = "api_key:revoke"

	// Data connection actions. The resource is a *models.DataConnection.
	ActionCreateDataConnection          Action = "data_connection:create"
	ActionGetDataConnection             Action = "data_connection:get"
	ActionPutDataConnection             Action = "data_connection:put"
	ActionDeleteDataConnection          Action = "data_connection:delete"
	ActionUseDataConnection             Action = "data_connection:use"
	ActionViewDataConnectionCredentials Action = "data_connection:credentials:view"
)
