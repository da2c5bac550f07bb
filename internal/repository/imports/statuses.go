package importitems

const (
	StatusParsed  = "parsed"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// ModelPayments is the model_type recorded for payment rows.
const ModelPayments = "payments"
