package config

import "fmt"

// Backend of the durable render job queue.
type QueueBackend int

const (
	QueueBackendSqlite QueueBackend = iota
	QueueBackendPostgres
)

var queueBackendNames = map[QueueBackend]string{
	QueueBackendSqlite:   "sqlite",
	QueueBackendPostgres: "postgres",
}

func (b QueueBackend) String() string {
	if n, ok := queueBackendNames[b]; ok {
		return n
	}
	return fmt.Sprintf("QueueBackend(%d)", int(b))
}

func ParseQueueBackend(name string) (QueueBackend, error) {
	for b, n := range queueBackendNames {
		if n == name {
			return b, nil
		}
	}
	return QueueBackendSqlite, fmt.Errorf("%s is not a valid QueueBackend", name)
}

func (b QueueBackend) MarshalYAML() (any, error) {
	return b.String(), nil
}

func (b *QueueBackend) UnmarshalYAML(unmarshal func(any) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	v, err := ParseQueueBackend(name)
	if err != nil {
		return err
	}
	*b = v
	return nil
}
