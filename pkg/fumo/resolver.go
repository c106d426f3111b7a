package fumo

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/omadm-protocol/omadm-go/pkg/log"
	"github.com/omadm-protocol/omadm-go/pkg/transport"
)

// ErrNotAvailable reports that the server has no usable firmware update
// to offer: no document, or one with missing/malformed required fields.
// This is an expected outcome, not a failure.
var ErrNotAvailable = errors.New("firmware update not available")

// DefaultDescription is used when the descriptor carries no description.
const DefaultDescription = "No description available"

// Recognized installParam keys.
const (
	paramChecksum      = "MD5"
	paramVersion       = "updateFwV"
	paramSecurityPatch = "securityPatchVersion"
)

// FirmwareObject describes one firmware payload offered by the server.
// Immutable after construction.
type FirmwareObject struct {
	// Description is human-readable text; DefaultDescription if absent.
	Description string

	// Size is the payload size in bytes.
	Size int64

	// ObjectURI is the payload location.
	ObjectURI string

	// Checksum is the payload MD5, empty if the server sent none.
	Checksum string

	// SecurityPatch identifies the security-patch level, empty if the
	// server sent none.
	SecurityPatch string

	// Version is the firmware version the payload updates to.
	Version FirmwareVersion
}

// Resolver fetches and parses download descriptor documents.
type Resolver struct {
	transport transport.Transport
	logger    log.Logger
}

// NewResolver creates a Resolver using the given transport.
func NewResolver(tr transport.Transport, logger log.Logger) *Resolver {
	return &Resolver{transport: tr, logger: log.OrNoop(logger)}
}

// descriptor is the download descriptor document's media node.
type descriptor struct {
	XMLName      xml.Name `xml:"media"`
	ObjectURI    string   `xml:"objectURI"`
	Size         int64    `xml:"size"`
	Description  string   `xml:"description"`
	InstallParam string   `xml:"installParam"`
}

// Resolve fetches the descriptor document at uri and parses it into a
// FirmwareObject. ErrNotAvailable is returned when the server has
// nothing usable to offer; transport failures are real errors.
func (r *Resolver) Resolve(ctx context.Context, uri string) (*FirmwareObject, error) {
	doc, err := r.transport.FetchDocument(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("fumo: fetch descriptor: %w", err)
	}
	if strings.TrimSpace(doc) == "" {
		return nil, ErrNotAvailable
	}
	return r.parse(doc)
}

func (r *Resolver) parse(doc string) (*FirmwareObject, error) {
	var d descriptor
	if err := xml.Unmarshal([]byte(doc), &d); err != nil {
		r.anomaly("descriptor", fmt.Sprintf("missing or malformed media node: %v", err))
		return nil, ErrNotAvailable
	}
	if strings.TrimSpace(d.ObjectURI) == "" {
		r.anomaly("descriptor", "missing objectURI")
		return nil, ErrNotAvailable
	}
	if strings.TrimSpace(d.InstallParam) == "" {
		r.anomaly("descriptor", "missing installParam")
		return nil, ErrNotAvailable
	}

	params := r.parseInstallParams(d.InstallParam)

	versionStr := params[paramVersion]
	if versionStr == "" {
		r.anomaly("descriptor", "missing update version")
		return nil, ErrNotAvailable
	}
	version, err := ParseVersion(versionStr)
	if err != nil {
		r.anomaly("descriptor", fmt.Sprintf("bad update version %q: %v", versionStr, err))
		return nil, ErrNotAvailable
	}

	desc := strings.TrimSpace(d.Description)
	if desc == "" {
		desc = DefaultDescription
	}

	return &FirmwareObject{
		Description:   desc,
		Size:          d.Size,
		ObjectURI:     strings.TrimSpace(d.ObjectURI),
		Checksum:      params[paramChecksum],
		SecurityPatch: params[paramSecurityPatch],
		Version:       version,
	}, nil
}

// parseInstallParams splits the semicolon-delimited key=value list.
// Pairs that do not split into exactly two parts are logged and skipped;
// whitespace-only values are normalized to empty.
func (r *Resolver) parseInstallParams(s string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		kv := strings.Split(pair, "=")
		if len(kv) != 2 {
			r.anomaly("installParam", fmt.Sprintf("skipping malformed pair %q", pair))
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		params[key] = value
	}
	return params
}

func (r *Resolver) anomaly(context, detail string) {
	r.logger.Log(log.NewAnomalyEvent("", context, detail))
}
