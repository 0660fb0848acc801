// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It adapts the training, selection and statistics
// services to JSON over HTTP; the learner is resolved through the identity
// provider set up by the authentication middleware.
package api
