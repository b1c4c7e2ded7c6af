package models

import "time"

// SessionSummary is the server's view of a session's pallets
type SessionSummary struct {
	PalletCount   int   `json:"palletCount"`
	PalletIndices []int `json:"palletIndices"`
}

// SessionDetails is the full server-side session document.
// Fields are keyed by dotted path (header_data.place, pallets_data.0.lot).
type SessionDetails struct {
	SessionID string            `json:"sessionId"`
	Finalized bool              `json:"finalized"`
	Fields    map[string]string `json:"fields"`
	Files     map[string]string `json:"files,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// PendingSession is an unfinished session listed for resumption
type PendingSession struct {
	SessionID   string     `json:"sessionId"`
	ReportType  ReportType `json:"reportType"`
	Magazyner   string     `json:"magazyner"`
	PalletCount int        `json:"palletCount"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// UploadedFile is returned by image uploads
type UploadedFile struct {
	FileID string `json:"fileId"`
}

// ProductInfo is the result of a barcode lookup
type ProductInfo struct {
	Barcode     string `json:"barcode"`
	Name        string `json:"name"`
	ProductType string `json:"productType"`
	Code        string `json:"code,omitempty"`
}
