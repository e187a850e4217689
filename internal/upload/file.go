// internal/upload/file.go
package upload

// TransportCode is the status the upload transport reported for a file slot.
type TransportCode int

// Values follow the classic multipart upload error codes.
const (
	TransportOK        TransportCode = 0
	TransportIniSize   TransportCode = 1
	TransportFormSize  TransportCode = 2
	TransportPartial   TransportCode = 3
	TransportNoFile    TransportCode = 4
	TransportNoTmpDir  TransportCode = 6
	TransportCantWrite TransportCode = 7
	TransportExtension TransportCode = 8
)

// File is an upload slot handed over by the request layer. The temp file at
// TempPath belongs to the transport until the pipeline adopts it.
type File interface {
	Err() TransportCode
	TempPath() string
	ClientFilename() string
}

// TempFile is a File backed by a path on the pipeline's filesystem.
type TempFile struct {
	Path string
	Name string
	Code TransportCode
}

// NewTempFile describes a successfully received upload.
func NewTempFile(path, clientName string) TempFile {
	return TempFile{Path: path, Name: clientName}
}

// EmptySlot describes a form submitted without a file.
func EmptySlot() TempFile {
	return TempFile{Code: TransportNoFile}
}

func (f TempFile) Err() TransportCode     { return f.Code }
func (f TempFile) TempPath() string       { return f.Path }
func (f TempFile) ClientFilename() string { return f.Name }
