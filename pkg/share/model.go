package model

import "time"

// FileEntry is one file of the shared directory as listed to clients
type FileEntry struct {
	// Name is the decoded file name, unique within the shared directory
	Name string `json:"name"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
	// Date is the last modification time
	Date time.Time `json:"date"`
}

// ServerInfo describes how the server can be reached
type ServerInfo struct {
	LocalURL  string  `json:"localUrl"`
	TunnelURL *string `json:"tunnelUrl"`
	ShareDir  string  `json:"shareDir"`
}

// SetDirParams is the body of a relocation request
type SetDirParams struct {
	Dir string `json:"dir"`
}

// SetDirResult is returned after a successful relocation
type SetDirResult struct {
	Message  string `json:"message"`
	ShareDir string `json:"shareDir"`
}

// UploadResult lists the stored names of an upload request
type UploadResult struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

// MessageResult is the body of operations that only report an outcome
type MessageResult struct {
	Message string `json:"message"`
}
