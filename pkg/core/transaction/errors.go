package transaction

import "errors"

var (
	errInvalidScope        = errors.New("transaction: invalid witness scope")
	errTooManySigners      = errors.New("transaction: too many signers")
	errDuplicateSigners    = errors.New("transaction: duplicate signer account")
	errTooManyAttrs        = errors.New("transaction: too many attributes of a type that disallows multiples")
	errScriptTooLarge      = errors.New("transaction: script exceeds maximum length")
	errNoScript            = errors.New("transaction: empty script")
	errWitnessCountMismatch = errors.New("transaction: witness count does not match signer count")
	errNegativeFee         = errors.New("transaction: negative fee")
)

// MaxAttributes bounds the attribute list length regardless of type.
const MaxAttributes = 16

// MaxSigners bounds the signer list length (one sender plus cosigners).
const MaxSigners = 16
