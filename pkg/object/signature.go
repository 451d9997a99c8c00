package object

// CommitSigningPayload returns the canonical bytes that are signed for a
// commit. The payload excludes the signature field itself.
func CommitSigningPayload(c *Commit) ([]byte, error) {
	unsigned := *c
	unsigned.Signature = ""
	return MarshalCommit(&unsigned)
}
