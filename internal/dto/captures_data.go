// CapturesData is a paginated response payload for the capture journal.
package dto

type CapturesData struct {
	Captures    []CaptureInfo `json:"captures"`
	CaptureDir  string        `json:"captureDir"`
	Length      int           `json:"length"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Limit       int           `json:"pageSize"`
}
