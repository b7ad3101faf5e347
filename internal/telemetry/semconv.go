package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys attached to pool registry metrics.
const (
	AttrEnvironment = attribute.Key("environment")
	AttrPoolName    = attribute.Key("pool.name")
	AttrTemplate    = attribute.Key("pool.template")
	AttrObjectName  = attribute.Key("object.name")
)

// PoolAttributes returns common attributes for per-pool metrics. poolName is
// the registry's unique pool id.
func PoolAttributes(environment, poolName, template string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrPoolName.String(poolName),
		AttrTemplate.String(template),
	}
}

// ObjectAttributes returns attributes for metrics about a single object.
func ObjectAttributes(environment, objectName string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrObjectName.String(objectName),
	}
}
