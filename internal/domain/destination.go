package domain

// Destination — направление публикации: пара (сервер, канал).
// Сравнима, используется как ключ дедупликации: в одно направление
// событие публикуется не более одного раза, сколько бы эскадрилий
// его ни делили.
type Destination struct {
	ServerID  string `json:"server_id"`
	ChannelID string `json:"channel_id"`
}

// String возвращает направление в виде "server/channel" для логов.
func (d Destination) String() string {
	return d.ServerID + "/" + d.ChannelID
}

// DestinationGroup — направление и эскадрильи, которые его делят,
// в порядке появления. Первая эскадрилья группы — "первый автор"
// будущей публикации.
type DestinationGroup struct {
	Destination Destination
	Squadrons   []Squadron
}

// GroupByDestination раскладывает эскадрильи по направлениям.
// Возвращает группы в порядке первого появления направления и
// отдельно эскадрильи без настроенного канала (их публикации
// пропускаются). Порядок детерминирован порядком входного списка.
func GroupByDestination(squadrons []Squadron) (groups []DestinationGroup, skipped []Squadron) {
	index := make(map[Destination]int, len(squadrons))
	for _, sq := range squadrons {
		if !sq.HasDestination() {
			skipped = append(skipped, sq)
			continue
		}
		dest := sq.Destination()
		if i, ok := index[dest]; ok {
			groups[i].Squadrons = append(groups[i].Squadrons, sq)
			continue
		}
		index[dest] = len(groups)
		groups = append(groups, DestinationGroup{
			Destination: dest,
			Squadrons:   []Squadron{sq},
		})
	}
	return groups, skipped
}
