// Package types defines the shared in-memory representation of an employee
// row. A Record is schema-free: it keeps whatever columns the backing file or
// an API client provided, in the order they were provided, and encodes back to
// JSON in that same order.
package types
