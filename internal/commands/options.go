package commands

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// defaultMemory is the initial and maximum memory in MiB of a partition
// created without memory options.
const defaultMemory = 1024

var processorModes = []string{"dedicated", "shared"}

var (
	ftpOptions     = []string{"boot-ftp-host", "boot-ftp-username", "boot-ftp-password", "boot-ftp-insfile"}
	storageOptions = []string{"boot-storage-hba", "boot-storage-lun", "boot-storage-wwpn"}
	bootOptions    = []string{
		"boot-storage-hba", "boot-storage-lun", "boot-storage-wwpn", "boot-network-nic",
		"boot-ftp-host", "boot-ftp-username", "boot-ftp-password", "boot-ftp-insfile",
		"boot-media-file", "boot-iso",
	}
)

// options is the part of cli.Context the option helpers read.
type options interface {
	IsSet(name string) bool
	String(name string) string
	Int(name string) int
}

func propertyFlags(update bool) []cli.Flag {
	verb := ""
	if update {
		verb = "new "
	}
	return []cli.Flag{
		&cli.StringFlag{Name: "description", Usage: "the " + verb + "description of the partition"},
		&cli.IntFlag{Name: "cp-processors", Usage: "the " + verb + "number of general purpose (CP) processors"},
		&cli.IntFlag{Name: "ifl-processors", Usage: "the " + verb + "number of IFL processors"},
		&cli.StringFlag{Name: "processor-mode", Usage: "the " + verb + "sharing mode for processors (dedicated, shared)"},
		&cli.IntFlag{Name: "initial-memory", Usage: "the " + verb + "initial amount of memory (in MiB) when the partition is started"},
		&cli.IntFlag{Name: "maximum-memory", Usage: "the " + verb + "maximum amount of memory (in MiB) while the partition is running"},
	}
}

func ftpFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "boot-ftp-host", Usage: "boot from an FTP server: the hostname or IP address of the FTP server"},
		&cli.StringFlag{Name: "boot-ftp-username", Usage: "boot from an FTP server: the user name on the FTP server"},
		&cli.StringFlag{Name: "boot-ftp-password", Usage: "boot from an FTP server: the password on the FTP server"},
		&cli.StringFlag{Name: "boot-ftp-insfile", Usage: "boot from an FTP server: the path to the INS-file on the FTP server"},
		&cli.StringFlag{Name: "boot-media-file", Usage: "boot from removable media on the HMC: the path to the image file on the HMC"},
	}
}

// propertiesFromOptions maps the property options that are set to partition
// properties of the same name.
func propertiesFromOptions(o options) (map[string]any, error) {
	props := map[string]any{}
	for _, name := range []string{"name", "description"} {
		if o.IsSet(name) {
			props[name] = o.String(name)
		}
	}
	for _, name := range []string{"cp-processors", "ifl-processors", "initial-memory", "maximum-memory"} {
		if o.IsSet(name) {
			props[name] = o.Int(name)
		}
	}
	if o.IsSet("processor-mode") {
		mode := o.String("processor-mode")
		if !contains(processorModes, mode) {
			return nil, fmt.Errorf("Invalid value for --processor-mode: %q (choose from %s)", mode, strings.Join(processorModes, ", "))
		}
		props["processor-mode"] = mode
	}
	return props, nil
}

// bootSelection is the boot device chosen by the boot options. HBA and NIC
// are names still to be resolved to element URIs.
type bootSelection struct {
	Properties map[string]any
	HBA        string
	NIC        string
}

// bootFromOptions evaluates the boot options in order of precedence:
// FCP LUN, PXE network, FTP server, removable media, ISO image. Storage,
// network and ISO are only offered for update.
func bootFromOptions(o options, update bool) (bootSelection, error) {
	sel := bootSelection{Properties: map[string]any{}}
	for _, name := range bootOptions {
		if o.IsSet(name) && strings.TrimSpace(o.String(name)) == "" {
			return sel, fmt.Errorf("Invalid value for --%s: must not be empty", name)
		}
	}
	switch {
	case update && anySet(o, storageOptions):
		if missing := missingOptions(o, storageOptions); len(missing) > 0 {
			return sel, fmt.Errorf("Boot from FCP LUN specified, but misses the following options: %s", strings.Join(missing, ", "))
		}
		sel.HBA = o.String("boot-storage-hba")
		sel.Properties["boot-device"] = "storage-adapter"
		sel.Properties["boot-logical-unit-number"] = o.String("boot-storage-lun")
		sel.Properties["boot-world-wide-port-name"] = o.String("boot-storage-wwpn")
	case update && o.IsSet("boot-network-nic"):
		sel.NIC = o.String("boot-network-nic")
		sel.Properties["boot-device"] = "network-adapter"
	case anySet(o, ftpOptions):
		if missing := missingOptions(o, ftpOptions); len(missing) > 0 {
			return sel, fmt.Errorf("Boot from FTP server specified, but misses the following options: %s", strings.Join(missing, ", "))
		}
		sel.Properties["boot-device"] = "ftp"
		for _, name := range ftpOptions {
			sel.Properties[name] = o.String(name)
		}
	case o.IsSet("boot-media-file"):
		sel.Properties["boot-device"] = "removable-media"
		sel.Properties["boot-removable-media"] = o.String("boot-media-file")
	case update && o.IsSet("boot-iso"):
		sel.Properties["boot-device"] = "iso-image"
	}
	return sel, nil
}

func anySet(o options, names []string) bool {
	for _, n := range names {
		if o.IsSet(n) {
			return true
		}
	}
	return false
}

func missingOptions(o options, names []string) []string {
	var missing []string
	for _, n := range names {
		if !o.IsSet(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// parseExtraVars parses repeated key=value options.
func parseExtraVars(values []string) (map[string]any, error) {
	vars := make(map[string]any, len(values))
	for _, kv := range values {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid extra var %q, expected key=value", kv)
		}
		vars[k] = v
	}
	return vars, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
