package worker

var (
	EncodeJob = encodeJob
	DecodeJob = decodeJob
)
