package laneclient

import "net"

// localIP discovers the address the OS would use to reach the wider
// network. A UDP dial performs no handshake, so this works offline too;
// the loopback address is the fallback.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
