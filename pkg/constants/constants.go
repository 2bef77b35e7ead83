package constants

const (
	// BusinessIDField is the member name written for an unwrapped entity reference.
	BusinessIDField = "businessId"

	// RefTag is the struct tag key carrying scope annotations and unwrapping options.
	RefTag = "ref"
	// JSONTag is the struct tag key carrying property names.
	JSONTag = "json"
)

// MaxIDLength is the longest canonical text form of a business id: sign plus 19 digits.
const MaxIDLength = 20
