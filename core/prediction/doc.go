// Package prediction abstracts short-term density forecasting behind a
// narrow interface. Model training and inference live outside this
// repository; the engines here are deterministic so the core's properties
// stay testable.
package prediction
