// Package script runs Lua one-shot handlers for the mock device.
//
// A script sees the request it answers and returns the response lines:
//
//	local text = heos.fixture("player.get_volume")
//	return heos.substitute(text, {player_id = QUERY.pid, sequence = QUERY.sequence})
//
// Globals available to a script:
//   - COMMAND, GROUP, ACTION and RAW describing the request
//   - QUERY, a table of the decoded query parameters
//   - heos.fixture(name) returning fixture text
//   - heos.substitute(text, values) replacing every "{key}" literally
//   - heos.fail(message) failing the request with an assertion error
//
// A script returns a string (one response line) or an array of strings
// (one line each). Only the base, string, table and math libraries are
// opened.
package script
