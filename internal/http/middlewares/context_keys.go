package middlewares

// CtxRequestID matches the key the handlers read when stamping error
// envelopes.
const CtxRequestID = "request_id"
