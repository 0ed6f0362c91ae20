package keys

import "errors"

// parseSingleSigVerificationScript recognizes the exact two-instruction
// shape PublicKey.VerificationScript emits: PUSHDATA1 <33 bytes> SYSCALL
// <4-byte interop id>.
func parseSingleSigVerificationScript(script []byte) (*PublicKey, bool) {
	if len(script) != 2+PublicKeySize+5 {
		return nil, false
	}
	if script[0] != 0x0c || script[1] != PublicKeySize || script[2+PublicKeySize] != 0x41 {
		return nil, false
	}
	pub, err := NewPublicKeyFromBytes(script[2 : 2+PublicKeySize])
	if err != nil {
		return nil, false
	}
	return pub, true
}

// parseSingleSigInvocationScript extracts the one 64-byte signature a
// single-sig invocation script pushes.
func parseSingleSigInvocationScript(script []byte) ([]byte, bool) {
	if len(script) != 2+64 || script[0] != 0x0c || script[1] != 64 {
		return nil, false
	}
	return script[2:66], true
}

// parseMultiSigVerificationScript reverses CreateMultiSigRedeemScript,
// recovering the quorum m and the sorted public keys it committed to.
func parseMultiSigVerificationScript(script []byte) (m int, pubs PublicKeys, err error) {
	if len(script) < 1 || script[0] < 0x11 || script[0] > 0x20 {
		return 0, nil, errors.New("keys: not a multisig verification script")
	}
	m = int(script[0]) - 0x10
	i := 1
	for i < len(script) && script[i] == 0x0c {
		if i+1 >= len(script) {
			return 0, nil, errors.New("keys: truncated multisig script")
		}
		ln := int(script[i+1])
		if i+2+ln > len(script) {
			return 0, nil, errors.New("keys: truncated multisig script")
		}
		pub, perr := NewPublicKeyFromBytes(script[i+2 : i+2+ln])
		if perr != nil {
			return 0, nil, perr
		}
		pubs = append(pubs, pub)
		i += 2 + ln
	}
	if i >= len(script) || script[i] < 0x11 || script[i] > 0x20 {
		return 0, nil, errors.New("keys: missing multisig key count")
	}
	n := int(script[i]) - 0x10
	if n != len(pubs) {
		return 0, nil, errors.New("keys: multisig key count mismatch")
	}
	if m < 1 || m > n {
		return 0, nil, errors.New("keys: invalid multisig quorum")
	}
	return m, pubs, nil
}

// parseMultiSigInvocationScript extracts the ordered list of 64-byte
// signatures an invocation script pushes ahead of a multisig check.
func parseMultiSigInvocationScript(script []byte) ([][]byte, error) {
	var sigs [][]byte
	for i := 0; i < len(script); {
		if script[i] != 0x0c || i+1 >= len(script) || script[i+1] != 64 || i+2+64 > len(script) {
			return nil, errors.New("keys: malformed multisig invocation script")
		}
		sigs = append(sigs, script[i+2:i+2+64])
		i += 2 + 64
	}
	return sigs, nil
}

// VerifyWitness checks an invocation/verification script pair against
// digest - the SHA-256 hash PrivateKey.Sign would itself hash its
// message down to, per PublicKey.Verify's contract - recognizing both
// the single-signature and m-of-n multisig script shapes this package
// emits. It does not run a VM: it is a direct reimplementation of the
// two witness patterns the reference CHECKSIG/CHECKMULTISIG fast paths
// handle.
func VerifyWitness(verificationScript, invocationScript, digest []byte) (bool, error) {
	if pub, ok := parseSingleSigVerificationScript(verificationScript); ok {
		sig, ok := parseSingleSigInvocationScript(invocationScript)
		if !ok {
			return false, nil
		}
		return pub.Verify(sig, digest), nil
	}

	m, pubs, err := parseMultiSigVerificationScript(verificationScript)
	if err != nil {
		return false, err
	}
	sigs, err := parseMultiSigInvocationScript(invocationScript)
	if err != nil {
		return false, err
	}
	if len(sigs) != m {
		return false, nil
	}
	si, ki := 0, 0
	for si < len(sigs) && ki < len(pubs) {
		if pubs[ki].Verify(sigs[si], digest) {
			si++
		}
		ki++
		if len(sigs)-si > len(pubs)-ki {
			break
		}
	}
	return si == len(sigs), nil
}
