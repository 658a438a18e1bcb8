// Package sharedtest contains test fixtures shared by the store's packages: mock backends, a
// mock broadcast bus, and test logging and context helpers.
package sharedtest
