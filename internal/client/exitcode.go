package client

import "github.com/mdouchement/zotero/pkg/libzot"

// Exit codes of the zot command.
const (
	ExitOK = iota
	ExitFailure
	ExitInvalidArgument
	ExitAuthentication
	ExitNotFound
	ExitVersionConflict
	ExitRateLimited
	ExitServerError
	ExitMalformedResponse
	ExitConfiguration
)

var codes = map[libzot.Kind]int{
	libzot.KindInvalidArgument:   ExitInvalidArgument,
	libzot.KindAuthentication:    ExitAuthentication,
	libzot.KindNotFound:          ExitNotFound,
	libzot.KindVersionConflict:   ExitVersionConflict,
	libzot.KindRateLimited:       ExitRateLimited,
	libzot.KindServerError:       ExitServerError,
	libzot.KindMalformedResponse: ExitMalformedResponse,
	libzot.KindConfiguration:     ExitConfiguration,
}

// ExitCode returns the process exit code matching err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if code, ok := codes[libzot.KindOf(err)]; ok {
		return code
	}
	return ExitFailure
}
