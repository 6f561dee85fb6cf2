package main

import (
	"fmt"
	"strings"

	"github.com/any-hub/offline-shell/internal/config"
	"github.com/any-hub/offline-shell/internal/version"
)

// printVersion 输出版本号，以及本次构建固化的离线页与预缓存清单，便于排查缓存版本问题。
func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
	fmt.Fprintf(stdOut, "offline page: %s\n", config.OfflinePage)
	fmt.Fprintf(stdOut, "manifest:     %s\n", strings.Join(config.StaticManifest(), " "))
}
