package optical

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"
)

type crawlFunc func(queue chan crawler.Device, errs chan error, matcher netlink.Matcher) chan struct{}

// hostSysfs is the only tree go-udev's crawler can walk.
const hostSysfs = "/sys"

// CrawlerProbe walks the uevent files under /sys/devices looking for SCSI
// optical block devices (kernel names sr0, sr1, ...). The crawler's base path
// is fixed, so the probe refuses to run against any other sysfs root rather
// than report host devices for it.
type CrawlerProbe struct {
	root  string
	crawl crawlFunc
}

// NewCrawlerProbe returns a CrawlerProbe backed by go-udev's sysfs crawler.
// An empty root means the host's /sys.
func NewCrawlerProbe(root string) CrawlerProbe {
	return CrawlerProbe{root: root, crawl: crawler.ExistingDevices}
}

func (CrawlerProbe) Name() string { return "udev-crawler" }

func (p CrawlerProbe) Devices(ctx context.Context) ([]string, error) {
	if root := strings.TrimSpace(p.root); root != "" && filepath.Clean(root) != hostSysfs {
		return nil, fmt.Errorf("crawler only walks %s; sysfs root is %s", hostSysfs, root)
	}
	crawl := p.crawl
	if crawl == nil {
		crawl = crawler.ExistingDevices
	}

	queue := make(chan crawler.Device)
	errs := make(chan error, 1)
	quit := crawl(queue, errs, opticalBlockMatcher())

	var devices []string
	for {
		select {
		case <-ctx.Done():
			select {
			case quit <- struct{}{}:
			default:
			}
			go func() {
				for range queue {
				}
			}()
			return devices, ctx.Err()
		case device, ok := <-queue:
			if !ok {
				select {
				case err := <-errs:
					return devices, fmt.Errorf("crawl sysfs: %w", err)
				default:
				}
				return devices, nil
			}
			if name := strings.TrimSpace(device.Env["DEVNAME"]); name != "" {
				devices = append(devices, devicePath(name))
			}
		}
	}
}

func opticalBlockMatcher() netlink.Matcher {
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Env: map[string]string{
			"SUBSYSTEM": "^block$",
			"DEVNAME":   "^sr[0-9]+$",
		},
	})
	return rules
}

func devicePath(name string) string {
	if strings.HasPrefix(name, "/dev/") {
		return name
	}
	return "/dev/" + strings.TrimPrefix(name, "/")
}
