package engine

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// NormalizeReference joins fork, name, and tag into fork/name:tag and
// validates the result. The familiar form is returned, so Docker Hub images
// keep their short spelling.
func NormalizeReference(fork, name, tag string) (string, error) {
	fork = strings.Trim(strings.TrimSpace(fork), "/")
	name = strings.Trim(strings.TrimSpace(name), "/")
	tag = strings.TrimPrefix(strings.TrimSpace(tag), ":")
	if fork == "" || name == "" || tag == "" {
		return "", fmt.Errorf("image reference requires fork, name, and tag (got %q, %q, %q)", fork, name, tag)
	}

	raw := fork + "/" + name + ":" + tag
	named, err := reference.ParseNormalizedNamed(raw)
	if err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", raw, err)
	}
	if _, ok := named.(reference.Tagged); !ok {
		return "", fmt.Errorf("image reference %q has no tag", raw)
	}
	// The parser reads any non-lowercase first component as a registry host,
	// so "MyFork" would silently become a registry.
	if domain := reference.Domain(named); !isRegistryHost(domain) {
		return "", fmt.Errorf("invalid image fork %q: repository names must be lowercase", fork)
	}
	return reference.FamiliarString(named), nil
}

func isRegistryHost(domain string) bool {
	return domain == "localhost" || strings.ContainsAny(domain, ".:")
}
