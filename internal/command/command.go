// Package command wraps the external transaction-simulation command and
// extracts the signable material and state diff from its output.
package command

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"golang.org/x/exp/slices"

	"github.com/base/task-signing-tool/internal/state"
)

const tenderlyPrefix = "https://dashboard.tenderly.co"

// Run executes the simulation command in workdir, teeing its stdout to the
// operator while capturing it for extraction.
func Run(ctx context.Context, workdir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workdir

	var buffer bytes.Buffer
	cmd.Stdout = io.MultiWriter(os.Stdout, &buffer)
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	return buffer.Bytes(), err
}

// InjectSender appends --sender to a forge script invocation that does not
// already carry one, so the simulation runs as the signing account.
func InjectSender(args []string, sender common.Address) []string {
	if len(args) < 2 || args[0] != "forge" || args[1] != "script" {
		return args
	}
	if slices.Contains(args, "--sender") {
		return args
	}
	return append(args, "--sender", sender.String())
}

// Signable is the 66-byte EIP-712 payload cut out of the simulation output:
// 0x1901 followed by the 32-byte domain hash and the 32-byte message hash.
type Signable struct {
	raw []byte
}

// ExtractSignable cuts the marker-delimited hex blob out of the simulation
// output. The blob must decode to exactly 66 bytes.
func ExtractSignable(output []byte, prefix, suffix string) (*Signable, error) {
	text := string(output)

	if index := strings.Index(text, prefix); prefix != "" && index >= 0 {
		text = text[index+len(prefix):]
	}
	if index := strings.Index(text, suffix); suffix != "" && index >= 0 {
		text = text[:index]
	}

	trimmed := strings.TrimSpace(text)
	raw := common.FromHex(trimmed)
	if len(raw) != 66 {
		return nil, fmt.Errorf("expected EIP-712 hex string with 66 bytes, got %d bytes, value: %s", len(raw), trimmed)
	}

	return &Signable{raw: raw}, nil
}

// Raw returns the full 66-byte payload forwarded to the signer.
func (s *Signable) Raw() []byte {
	raw := make([]byte, len(s.raw))
	copy(raw, s.raw)
	return raw
}

// DomainHash renders the domain hash as 0x followed by exactly 64 lowercase
// hex characters.
func (s *Signable) DomainHash() string {
	return "0x" + hex.EncodeToString(s.raw[2:34])
}

// MessageHash renders the message hash as 0x followed by exactly 64
// lowercase hex characters.
func (s *Signable) MessageHash() string {
	return "0x" + hex.EncodeToString(s.raw[34:66])
}

// ExtractTenderlyLink scans the simulation output for a Tenderly dashboard
// link. The link ends at the first space or newline.
func ExtractTenderlyLink(output []byte) (string, bool) {
	text := string(output)

	index := strings.Index(text, tenderlyPrefix)
	if index < 0 {
		return "", false
	}
	text = text[index:]

	if end := strings.IndexAny(text, " \n"); end >= 0 {
		text = text[:end]
	}

	link := strings.TrimSpace(text)
	return link, link != ""
}

// ReadDiffFile reads the raw state diff the simulation tool wrote to disk.
func ReadDiffFile(path string) ([]state.RawChange, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading diff file: %w", err)
	}

	var raw []state.RawChange
	if err := json.Unmarshal(contents, &raw); err != nil {
		return nil, fmt.Errorf("error decoding diff file %s: %w", path, err)
	}
	return raw, nil
}
