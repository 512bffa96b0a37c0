// internal/domain/models/dataconnection.go
package models

// DataProvider identifies the storage backend behind a data connection.
type DataProvider string

const (
	ProviderS3    DataProvider = "s3"
	ProviderAzure DataProvider = "az"
)

// DataConnectionAuthType discriminates the credential shapes a connection
// can carry.
type DataConnectionAuthType string

const (
	AuthS3AccessKey   DataConnectionAuthType = "s3_access_key"
	AuthS3IAMRole     DataConnectionAuthType = "s3_iam_role"
	AuthAzureSasToken DataConnectionAuthType = "az_sas_token"
)

// DataConnectionAuth holds backend credentials. It must never reach a
// principal lacking the view-credentials permission; authz.Redact strips it.
type DataConnectionAuth struct {
	Type DataConnectionAuthType `bson:"type" json:"type"`

	// S3 access-key credentials.
	AccessKeyID     string `bson:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `bson:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`

	// IAM role ARN for role-based S3 auth.
	RoleARN string `bson:"role_arn,omitempty" json:"role_arn,omitempty"`

	// Azure SAS token.
	SasToken string `bson:"sas_token,omitempty" json:"sas_token,omitempty"`
}

// DataConnectionDetails locates the storage the connection points at.
type DataConnectionDetails struct {
	Provider   DataProvider `bson:"provider" json:"provider"`
	Bucket     string       `bson:"bucket,omitempty" json:"bucket,omitempty"`
	Container  string       `bson:"container,omitempty" json:"container,omitempty"`
	Region     string       `bson:"region" json:"region"`
	BasePrefix string       `bson:"base_prefix" json:"base_prefix"`
}

// DataConnection is a storage backend definition referenced by product
// mirrors. Only admins may create, update, or delete connections.
type DataConnection struct {
	DataConnectionID string `bson:"data_connection_id" json:"data_connection_id"`
	Name             string `bson:"name" json:"name"`

	// ReadOnly connections cannot be selected for new product mirrors.
	ReadOnly bool `bson:"read_only" json:"read_only"`

	// AllowedVisibilities limits which product visibilities may use this
	// connection. Empty means all.
	AllowedVisibilities []ProductVisibility `bson:"allowed_visibilities,omitempty" json:"allowed_visibilities,omitempty"`

	// RequiredFlag, when set, restricts use of the connection to accounts
	// carrying the flag.
	RequiredFlag AccountFlag `bson:"required_flag,omitempty" json:"required_flag,omitempty"`

	Details        DataConnectionDetails `bson:"details" json:"details"`
	Authentication *DataConnectionAuth   `bson:"authentication,omitempty" json:"authentication,omitempty"`

	// MirroredBy lists products that mirror this connection. It is not
	// persisted; callers populate it before authorization so the decision
	// engine can evaluate membership-based access without I/O.
	MirroredBy []ProductRef `bson:"-" json:"-"`
}

// AllowsVisibility reports whether products with visibility v may use this
// connection.
func (d *DataConnection) AllowsVisibility(v ProductVisibility) bool {
	if len(d.AllowedVisibilities) == 0 {
		return true
	}
	for _, allowed := range d.AllowedVisibilities {
		if allowed == v {
			return true
		}
	}
	return false
}
