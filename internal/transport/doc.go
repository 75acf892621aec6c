// Package transport implements the wire protocol spoken between the
// coordinator and the worker nodes.
//
// Tasks and kill directives travel over TCP, one request per connection:
//
//	TASK\n<lower> <upper>\n   ->   <decimal result>   (worker closes)
//	DIE\n<sleepSeconds>\n     ->   (worker closes)
//
// Discovery is a UDP probe, usually broadcast:
//
//	MASTER_DISCOVERY   ->   MASTER_DISCOVERY_RESPONSE[ <task port>]
package transport
