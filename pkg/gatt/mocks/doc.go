// Package mocks provides testify mocks of the gatt interfaces, in the
// layout .mockery.yaml describes.
package mocks
