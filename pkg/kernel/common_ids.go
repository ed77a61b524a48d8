package kernel

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type ClientID string

func NewClientID(id string) ClientID { return ClientID(id) }
func (c ClientID) String() string    { return string(c) }
func (c ClientID) IsEmpty() bool     { return string(c) == "" }

// ConnectionID identifies one realtime operator connection.
type ConnectionID string

func NewConnectionID(id string) ConnectionID { return ConnectionID(id) }
func (c ConnectionID) String() string        { return string(c) }
func (c ConnectionID) IsEmpty() bool         { return string(c) == "" }

type GroupID string

func (g GroupID) String() string { return string(g) }
