// Package subsystems contains interfaces for implementation of custom store components.
//
// Most applications will not need to refer to these types. You will use them if you are creating a
// plug-in component, such as a backend for one of the durability classes, a broadcast bus, or a
// test fixture. They are also used as interfaces for the built-in components, so that plugin
// components can be used interchangeably with those: for instance, Config.Replicated uses the type
// subsystems.Backend as an abstraction for the durable storage of replicated keys.
package subsystems
