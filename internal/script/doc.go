// Package script loads route registrations from Lua files.
//
// Each script runs in its own sandboxed gopher-lua state. Only the base, table,
// string and math libraries are opened; dofile, loadfile and load are removed
// and require only resolves the safe built-in modules plus "route".
//
// Scripts register handlers through the preloaded route module:
//
//	route.register("create_user", {role = "admin"}, function(params)
//	  return "admin creating " .. params.username
//	end)
//	route.global("ping", function(params) return "pong" end)
//	route.dimensions()
//
// A Lua handler receives the dispatch parameters as a table and returns a
// single value, or nil plus a message to fail the dispatch. Calls into a state
// are serialized, so handlers from one script never run concurrently.
package script
