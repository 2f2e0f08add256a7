// Package api exposes the hookrelay HTTP surface.
//
// Routes accept an optional trailing slash:
//
//	/users, /users/{id}
//	/accounts, /accounts/{account_id}
//	/account_members, /account_members/{id}
//	/destinations, /destinations/{id}
//	/logs, /logs/{id}             read-only
//	/roles, /roles/{id}           read-only
//	/obtain-token, /logout
//	/server/incoming_data         authenticated by the CL-X-TOKEN header
//	/health/live, /health/ready, /metrics
//
// Every request passes through request id, logging, metrics, panic
// recovery, token authentication and principal resolution. Authenticated
// users are additionally rate limited when a Limiter is configured.
// Authorization is decided by the services, not by the handlers.
package api
