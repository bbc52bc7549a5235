package entity

type CCIPStatus string

const (
	CCIPStatusIdle    CCIPStatus = "idle"
	CCIPStatusPending CCIPStatus = "pending"
	CCIPStatusStored  CCIPStatus = "stored"
	CCIPStatusSuccess CCIPStatus = "success"
	CCIPStatusFailed  CCIPStatus = "failed"
)

var AllCCIPStatuses = []CCIPStatus{
	CCIPStatusIdle,
	CCIPStatusPending,
	CCIPStatusStored,
	CCIPStatusSuccess,
	CCIPStatusFailed,
}

// Delivered reports whether the receiver contract has recorded the message.
func (s CCIPStatus) Delivered() bool {
	return s == CCIPStatusStored || s == CCIPStatusSuccess
}

func (s CCIPStatus) Final() bool {
	return s == CCIPStatusSuccess || s == CCIPStatusFailed
}

// Step maps a status onto the index of the progress step that is active once the
// status is observed. Success maps to StepCount, i.e. all steps are done.
func (s CCIPStatus) Step() int {
	switch s {
	case CCIPStatusPending:
		return 1
	case CCIPStatusStored:
		return 2
	case CCIPStatusSuccess:
		return StepCount
	default:
		return StepNotStarted
	}
}
