// Package discovery announces and finds peripheral bridges over mDNS/DNS-SD.
//
// A bridge serves its peripherals over the interaction protocol and
// advertises itself so scanners on the local network can find it without
// configuration.
//
// # Service Type (_blebridge._tcp)
//
// Instance name is the bridge name. The SRV record carries the TCP port of
// the bridge's interaction server.
//
// TXT records:
//   - id: bridge identifier (required)
//   - name: display name (optional, defaults to the instance name)
//   - n: number of peripherals currently served
//   - v: protocol version
//
// # Scanning
//
// Scanner implements gatt.Scanner. It browses for bridges, dials each one
// once and merges the bridges' device lists into a single scan. A bridge
// that fails during the scan is dropped and redialed when it is announced
// again; the scan itself continues.
package discovery
