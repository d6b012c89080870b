// Package broadcast implements the fan-out of persisted messages to the
// registered connections this instance hosts; with every instance consuming
// every event, the instances together cover the whole registry. Delivery
// attempts are independent: one connection's failure never aborts delivery
// to the others. Connections reported gone by the transport are removed
// from the registry as a side effect.
package broadcast
