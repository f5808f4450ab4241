package launch

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/template"

	"armsetup/internal/fileutil"
	"armsetup/internal/hostfacts"
)

const scriptMode = 0o755

var safeShellWord = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

const scriptTemplate = `#!/bin/bash
# Automatic Ripping Machine launch script.
# Generated by armsetup; re-run "armsetup install" to regenerate it.

docker run -d \
    -p {{ .HostPort }}:{{ .ContainerPort }} \
    -e ARM_UID={{ .UID }} \
    -e ARM_GID={{ .GID }} \
    -e TZ={{ quote .Timezone }} \
{{- range .Mounts }}
    -v {{ quote (printf "%s:%s" .HostPath .ContainerPath) }} \
{{- end }}
{{- range .Devices }}
    --device={{ quote (printf "%s:%s" . .) }} \
{{- end }}
{{- if .GPU }}
    --gpus all \
    -e NVIDIA_DRIVER_CAPABILITIES=all \
{{- end }}
    --privileged \
    --restart always \
    --name {{ quote .ContainerName }} \
{{- if .CPUSet }}
    --cpuset-cpus={{ cpuset .CPUSet }} \
{{- end }}
    {{ quote .Image }}
`

var script = template.Must(template.New("launch").Funcs(template.FuncMap{
	"quote":  shellQuote,
	"cpuset": hostfacts.FormatCPUSet,
}).Parse(scriptTemplate))

type templateData struct {
	Config
	ContainerPort int
}

// Render writes the launch script for cfg to w.
func Render(w io.Writer, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid launch configuration: %w", err)
	}
	if err := script.Execute(w, templateData{Config: cfg, ContainerPort: ContainerPort}); err != nil {
		return fmt.Errorf("render launch script: %w", err)
	}
	return nil
}

// Owner identifies the account that owns the written script.
type Owner struct {
	UID int
	GID int
}

// WriteScript renders cfg and installs it at path with mode 0755 owned by
// owner. An existing file is preserved as path.bak, replacing any older
// backup. Nothing is written when rendering fails.
func WriteScript(path string, cfg Config, owner Owner) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, cfg); err != nil {
		return "", err
	}
	backup, err := fileutil.ReplaceFile(path, buf.Bytes(), scriptMode)
	if err != nil {
		return backup, err
	}
	if err := fileutil.Chown(path, owner.UID, owner.GID); err != nil {
		return backup, err
	}
	return backup, nil
}

func shellQuote(value string) string {
	if safeShellWord.MatchString(value) {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
