package optical

import (
	"fmt"
	"strings"
)

// RenderUdevRule returns the udev rule that runs wrapper with the kernel
// name of any SCSI optical drive that reports inserted media.
func RenderUdevRule(wrapper string) (string, error) {
	wrapper = strings.TrimSpace(wrapper)
	if wrapper == "" {
		return "", fmt.Errorf("udev rule requires a wrapper command")
	}
	if strings.ContainsAny(wrapper, "\"\n") {
		return "", fmt.Errorf("wrapper %q contains characters udev cannot quote", wrapper)
	}
	return fmt.Sprintf(
		"ACTION==\"change\", SUBSYSTEM==\"block\", KERNEL==\"s[rc][0-9]*\", ENV{ID_CDROM_MEDIA}==\"1\", RUN+=\"%s %%k\"\n",
		wrapper,
	), nil
}
