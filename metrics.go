package wwvb

// MetricsRecorder is an interface for tracking transmitter metrics.
// RecordSlotTransmitted counts each transmitted symbol.
// RecordMinuteCompleted counts frame wraps.
// RecordFramePublished counts frames handed to the scheduler.
// RecordSampleRejected counts time samples refused by the encoder.
// RecordStaleFrame counts minutes retransmitted from an old frame.
// RecordTimingOverrun tracks late or missed timer fires by kind.
// RecordCarrierError counts failed carrier level changes.
// RecordTraceDropped counts trace symbols lost to a full buffer.
// RecordClientConnected logs a new feed client connection.
// RecordClientDisconnected logs a feed client disconnection.
// RecordFeedRecordSent tracks the size of frame records sent out.
// UpdateTickSkew updates the wall ticker skew factor and next delay.
type MetricsRecorder interface {
	RecordSlotTransmitted(value SlotValue)
	RecordMinuteCompleted()
	RecordFramePublished()
	RecordSampleRejected()
	RecordStaleFrame()
	RecordTimingOverrun(kind string)
	RecordCarrierError(op string)
	RecordTraceDropped()
	RecordClientConnected()
	RecordClientDisconnected()
	RecordFeedRecordSent(size int)
	UpdateTickSkew(skew float64, delaySeconds float64)
}
