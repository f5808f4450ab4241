// Package optical discovers optical drives and reacts to disc insertion.
//
// Device discovery unions several independent probes (lsscsi device
// classification, sysfs block enumeration with udev property lookup, and a
// sysfs uevent crawl) and deduplicates by device path; no probe is preferred
// over another. The package also renders the udev trigger rule and hosts a
// netlink monitor that can stand in for that rule. Parsers live here to keep
// low-level device quirks isolated from the bootstrap pipeline.
package optical
