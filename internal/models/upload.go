package models

// UploadScope selects the key namespace of a multipart upload.
type UploadScope string

const (
	UploadScopeSubmission   UploadScope = "submissions"
	UploadScopeFormTemplate UploadScope = "templates"
	UploadScopeProject      UploadScope = "projects"
	UploadScopeUser         UploadScope = "users"
)

// UploadSession is the coordination state handed back when a multipart upload
// is opened. It lives only between initiate and complete/abort.
type UploadSession struct {
	UploadID    string
	Key         string
	ContentType string
	Parts       int
	PartURLs    []UploadPartURL
}

// UploadPartURL is a signed URL for one 1-indexed part.
type UploadPartURL struct {
	PartNumber int32  `json:"partNumber"`
	URL        string `json:"url"`
}
