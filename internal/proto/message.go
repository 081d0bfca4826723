package proto

import "encoding/base64"

// Record types carried in the "type" field.
const (
	TypeAuth            = "auth"
	TypeMsg             = "msg"
	TypeFile            = "file"
	TypeDownloadRequest = "download_request"
	TypeFileDownload    = "file_download"
	TypeError           = "error"
)

// ServerUsername attributes records that originate from the server itself.
const ServerUsername = "server"

// DefaultMaxFrameBytes bounds a single record on the wire, delimiter excluded.
const DefaultMaxFrameBytes = 16 << 20

// Record is one newline-delimited JSON object on the wire.
// Only the fields relevant to Type are populated; unknown fields are ignored on decode.
type Record struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Content  string `json:"content,omitempty"`
	Filename string `json:"filename,omitempty"`
	Message  string `json:"message,omitempty"`
	Code     string `json:"code,omitempty"`
	Key      string `json:"key,omitempty"`
}

// Auth is the first record a client sends.
func Auth(username, key string) Record {
	return Record{Type: TypeAuth, Username: username, Key: key}
}

// Chat builds a chat record. Username is empty on the client side and
// filled in by the server on relay.
func Chat(username, content string) Record {
	return Record{Type: TypeMsg, Username: username, Content: content}
}

// File builds a file upload record with base64-encoded content.
func File(username, filename string, data []byte) Record {
	return Record{Type: TypeFile, Username: username, Filename: filename, Content: EncodeContent(data)}
}

// DownloadRequest asks the server for a previously uploaded file.
func DownloadRequest(filename string) Record {
	return Record{Type: TypeDownloadRequest, Filename: filename}
}

// FileDownload is the server's reply to a download request.
func FileDownload(filename string, data []byte) Record {
	return Record{Type: TypeFileDownload, Username: ServerUsername, Filename: filename, Content: EncodeContent(data)}
}

// Error builds an error record addressed to a single connection.
func Error(code, message string) Record {
	return Record{Type: TypeError, Code: code, Message: message}
}

// EncodeContent encodes file bytes for the content field.
func EncodeContent(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeContent reverses EncodeContent.
func DecodeContent(content string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(content)
}
