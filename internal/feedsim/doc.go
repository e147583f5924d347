// Package feedsim implements a simulated market-data feed server for
// local development and integration testing. It speaks the same wire
// protocol as the production feed: JSON text commands inbound, binary
// frames outbound, bearer-token auth on the upgrade request.
//
// Prices follow a bounded random walk per symbol so dashboards pointed
// at the simulator render plausible movement.
package feedsim
