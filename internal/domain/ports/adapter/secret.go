package adapter

// SecretCipher seals credentials before they are persisted.
type SecretCipher interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}
