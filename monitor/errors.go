package monitor

import "errors"

var ErrJournalDisabled = errors.New("status journal is not configured")
