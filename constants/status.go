package constants

// ScanStatus is the canonical status for rows in scan_results.
type ScanStatus string

// Stable values (store these exact strings in DB).
const (
	ScanStatusQueued  ScanStatus = "QUEUED"  // waiting in the scan queue
	ScanStatusRunning ScanStatus = "RUNNING" // in progress
	ScanStatusDone    ScanStatus = "DONE"    // extraction succeeded
	ScanStatusPartial ScanStatus = "PARTIAL" // one path failed, result still usable
	ScanStatusFailed  ScanStatus = "FAILED"  // terminal failure
)
