package libzot

const (
	// APIVersion is the Zotero Web API version spoken by the client.
	APIVersion = "3"
	// DefaultBaseURL is the endpoint of the Zotero Web API.
	DefaultBaseURL = "https://api.zotero.org"
)

const (
	// LibraryTypeUser targets a user library.
	LibraryTypeUser = "users"
	// LibraryTypeGroup targets a group library.
	LibraryTypeGroup = "groups"
)

// HTTP headers of the Zotero Web API.
const (
	HeaderAPIKey                   = "Zotero-API-Key"
	HeaderAPIVersion               = "Zotero-API-Version"
	HeaderWriteToken               = "Zotero-Write-Token"
	HeaderIfUnmodifiedSinceVersion = "If-Unmodified-Since-Version"
	HeaderLastModifiedVersion      = "Last-Modified-Version"
	HeaderTotalResults             = "Total-Results"
	HeaderRetryAfter               = "Retry-After"
)

const (
	// MaxPageSize is the largest page the Zotero Web API returns.
	MaxPageSize = 100
	// MaxObjectsPerWrite is the largest number of objects accepted by a single write or itemKey filter.
	MaxObjectsPerWrite = 50
)
