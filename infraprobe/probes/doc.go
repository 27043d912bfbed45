// Package probes registers all built-in probers.
//
// Importing this package registers factories for every service kind.
// For selective imports, import individual sub-packages:
//
//	import _ "github.com/BigKAA/infraprobe/infraprobe/probes/httpprobe"
//	import _ "github.com/BigKAA/infraprobe/infraprobe/probes/pgprobe"
package probes

import (
	_ "github.com/BigKAA/infraprobe/infraprobe/probes/httpprobe"
	_ "github.com/BigKAA/infraprobe/infraprobe/probes/pgprobe"
	_ "github.com/BigKAA/infraprobe/infraprobe/probes/redisprobe"
	_ "github.com/BigKAA/infraprobe/infraprobe/probes/tcpprobe"
	_ "github.com/BigKAA/infraprobe/infraprobe/probes/vaultprobe"
)
