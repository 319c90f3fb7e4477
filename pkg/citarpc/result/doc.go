/*
Package result contains types returned by CITA JSON-RPC methods.
*/
package result
