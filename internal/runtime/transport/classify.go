package transport

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	qerrors "github.com/drblury/queueflow/internal/runtime/errors"
)

// Classifier maps a transport error onto the supervisor's reaction.
type Classifier func(err error) qerrors.TransportClass

var (
	credentialExpiryCodes = map[string]struct{}{
		"ExpiredToken":          {},
		"ExpiredTokenException": {},
		"RequestExpired":        {},
		"CredentialsError":      {},
	}
	fatalCodes = map[string]struct{}{
		"AccessDenied":                            {},
		"AccessDeniedException":                   {},
		"AWS.SimpleQueueService.NonExistentQueue": {},
		"QueueDoesNotExist":                       {},
	}
)

// Classify is the default Classifier. Credential expiry reconnects, access
// denied and missing queues are fatal, everything else is transient.
func Classify(err error) qerrors.TransportClass {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return qerrors.TransportTransient
	}

	var missing *types.QueueDoesNotExist
	if errors.As(err, &missing) {
		return qerrors.TransportFatal
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := credentialExpiryCodes[code]; ok {
			return qerrors.TransportReconnect
		}
		if _, ok := fatalCodes[code]; ok {
			return qerrors.TransportFatal
		}
	}
	return qerrors.TransportTransient
}
