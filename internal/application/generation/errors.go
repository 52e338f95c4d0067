package generation

import "errors"

// Client input errors. Their messages are returned to the caller as-is.
var (
	ErrNoImages        = errors.New("Invalid File or no images")
	ErrNoLogo          = errors.New("Invalid File or no logo")
	ErrInvalidFields   = errors.New("Invalid Fields")
	ErrUnsupportedFile = errors.New("Invalid File type")
	ErrMissingOwner    = errors.New("Missing listing owner")
)

var (
	ErrNoDocument   = errors.New("Generated output did not contain an HTML document")
	ErrClientGone   = errors.New("client disconnected")
	ErrStreamClosed = errors.New("generation stream ended early")
)

// IsInputError reports whether err was caused by the submission itself.
func IsInputError(err error) bool {
	for _, target := range []error{ErrNoImages, ErrNoLogo, ErrInvalidFields, ErrUnsupportedFile, ErrMissingOwner} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// PublicMessage is the text a caller may see for err. Internal causes are hidden.
func PublicMessage(err error) string {
	switch {
	case IsInputError(err):
		return err.Error()
	case errors.Is(err, ErrNoDocument):
		return ErrNoDocument.Error()
	default:
		return "Something went wrong"
	}
}
