// Command edge-gateway runs the EdgeGateway / internal control-plane pair:
// KMS-backed S2S signing, svcconfig-driven routing, and write-ahead audit
// logging.
package main

import "github.com/meridianmesh/edge-gateway/cmd/edge-gateway/cmd"

func main() {
	cmd.Execute()
}
