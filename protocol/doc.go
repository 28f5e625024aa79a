// Package protocol implements the HEOS CLI wire format spoken by the mock
// device.
//
// Every request and every response is a single line terminated by
// Separator. Requests are URL-shaped:
//
//	heos://player/get_volume?pid=1&sequence=7
//
// where the URL host is the command group, the path is the action and the
// query carries the parameters as percent-encoded strings.
//
// Basic usage:
//
//	reader := protocol.NewReader(conn)
//	writer := protocol.NewWriter(conn)
//	for {
//		line, err := reader.ReadLine()
//		if err != nil {
//			break
//		}
//		req, err := protocol.ParseRequest(line)
//		if err != nil {
//			break
//		}
//		writer.WriteLine(respond(req))
//	}
package protocol
