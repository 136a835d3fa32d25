// Package policy asks the external entitlement service whether an entity may
// use a module.
//
// The production [Validator] invokes an AWS Lambda function synchronously
// with {"entity_number", "module_number"} and reads is_valid (or is_allowed)
// from the response, unwrapping an API-gateway style {"statusCode", "body"}
// envelope when present.
//
// A response that cannot be understood is a denial, not an error. Errors are
// reserved for transport failures, timeouts and function errors.
package policy
