package ws

// IHub routes event payloads to connected users. The in-memory Hub covers
// a single server; RedisHub spans servers through pub/sub.
type IHub interface {
	Run()
	RegisterClient(client *UserClient)
	UnregisterClient(client *UserClient)
	SendToUser(userId string, payload []byte)
	ClientCount() int
	SetOnClientUnregister(callback func(client *UserClient) error)
}
