// Package pass orchestrates wallet pass generation: validate, stage,
// substitute, hash, sign, pack.
package pass

// Request carries the caller-supplied display fields for one pass. Every
// field is an opaque string to the pipeline except SerialNumber, which also
// names the staging area and the downloaded file.
type Request struct {
	SerialNumber       string `json:"serialNumber"`
	Amount             string `json:"amount"`
	Category           string `json:"category"`
	WithdrawalRate     string `json:"withdrawalRate"`
	SuccessProbability string `json:"successProbability"`
	Explanation        string `json:"explanation"`
	BarcodeMessage     string `json:"barcodeMessage"`
}

// tokens returns the placeholder mapping fed to the template engine.
func (r *Request) tokens() map[string]string {
	return map[string]string{
		"serialNumber":       r.SerialNumber,
		"amount":             r.Amount,
		"category":           r.Category,
		"withdrawalRate":     r.WithdrawalRate,
		"successProbability": r.SuccessProbability,
		"explanation":        r.Explanation,
		"barcodeMessage":     r.BarcodeMessage,
	}
}

// Result is the finished deliverable: the signed archive plus the metadata
// the boundary layer needs for transport headers and audit.
type Result struct {
	SerialNumber  string
	Archive       []byte
	ManifestSHA1  string
	ManifestBytes []byte
	FileCount     int
}
