package shared

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// ReceiverVia records which identifier form resolved the receiver
type ReceiverVia string

const (
	ReceiverViaWalletNumber ReceiverVia = "wallet_number"
	ReceiverViaEmail        ReceiverVia = "email"
	ReceiverViaQR           ReceiverVia = "qr"
)
